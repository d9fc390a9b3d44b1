// Package windows provides the Win32 backend: window enumeration through
// golang.org/x/sys/windows, input through SendInput and PostMessage via
// github.com/lxn/win. On other platforms the package is empty and
// platform.NewProvider reports ErrUnsupported.
package windows
