// Package dicomdir reads acquisition directories: DICOMDIR-style DIRFILE
// descriptors plus the instance series they reference. A Record exposes
// patient identity and acquisition time without the caller pre-parsing the
// series; every derived value is computed at most once.
package dicomdir
