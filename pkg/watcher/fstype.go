package watcher

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemType is a coarse classification of the filesystem backing a
// watched path. Remote and FUSE filesystems often drop inotify events, so
// the watcher polls on them.
type FilesystemType int

const (
	FSTypeUnknown FilesystemType = iota
	FSTypeLocal
	FSTypeNFS
	FSTypeSMB
	FSTypeSSHFS
	FSTypeFUSE
)

func (t FilesystemType) String() string {
	switch t {
	case FSTypeLocal:
		return "local"
	case FSTypeNFS:
		return "nfs"
	case FSTypeSMB:
		return "smb"
	case FSTypeSSHFS:
		return "sshfs"
	case FSTypeFUSE:
		return "fuse"
	default:
		return "unknown"
	}
}

// mountsFile lists mounted filesystems on Linux. Elsewhere it is absent and
// detection reports FSTypeUnknown.
var mountsFile = "/proc/self/mounts"

// detectFilesystemTypeFunc is swapped in tests.
var detectFilesystemTypeFunc = detectFromMounts

// DetectFilesystemType classifies the filesystem holding path. A path that
// does not exist is classified by its nearest existing ancestor.
func DetectFilesystemType(path string) FilesystemType {
	if path == "" {
		return FSTypeUnknown
	}
	return detectFilesystemTypeFunc(path)
}

func detectFromMounts(path string) FilesystemType {
	abs, err := filepath.Abs(path)
	if err != nil {
		return FSTypeUnknown
	}
	for {
		if _, err := os.Stat(abs); err == nil {
			break
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return FSTypeUnknown
		}
		abs = parent
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	f, err := os.Open(mountsFile)
	if err != nil {
		return FSTypeUnknown
	}
	defer f.Close()

	best, bestType := "", ""
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		mount := unescapeMount(fields[1])
		if !underMount(abs, mount) || len(mount) < len(best) {
			continue
		}
		best, bestType = mount, fields[2]
	}
	if best == "" {
		return FSTypeUnknown
	}
	return classify(bestType)
}

func underMount(path, mount string) bool {
	if mount == "/" {
		return true
	}
	return path == mount || strings.HasPrefix(path, mount+"/")
}

// unescapeMount decodes the octal escapes used in mount tables for spaces
// and tabs.
func unescapeMount(s string) string {
	r := strings.NewReplacer(`\040`, " ", `\011`, "\t", `\012`, "\n", `\134`, `\`)
	return r.Replace(s)
}

func classify(fsType string) FilesystemType {
	t := strings.ToLower(fsType)
	switch {
	case t == "nfs" || t == "nfs4":
		return FSTypeNFS
	case t == "cifs" || t == "smbfs" || t == "smb3":
		return FSTypeSMB
	case t == "fuse.sshfs":
		return FSTypeSSHFS
	case strings.HasPrefix(t, "fuse"):
		return FSTypeFUSE
	default:
		return FSTypeLocal
	}
}

func isRemoteFilesystem(t FilesystemType) bool {
	switch t {
	case FSTypeNFS, FSTypeSMB, FSTypeSSHFS, FSTypeFUSE:
		return true
	default:
		return false
	}
}
