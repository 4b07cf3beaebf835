package storage

import (
	"strings"
)

// SanitizeName normalises separators to "/" and drops empty, "." and ".."
// segments so the result can never climb out of the adapter's root.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	segments := strings.Split(name, "/")

	clean := segments[:0]
	for _, s := range segments {
		if s == "" || s == "." || s == ".." {
			continue
		}
		clean = append(clean, s)
	}
	return strings.Join(clean, "/")
}

// joinKey applies prefix to an already sanitised name
func joinKey(prefix, name string) string {
	prefix = SanitizeName(prefix)
	if prefix == "" {
		return name
	}
	if name == "" {
		return prefix
	}
	return prefix + "/" + name
}

// checkKey rejects keys that would address something other than what they
// name once interpreted as a path.
func checkKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if SanitizeName(key) != strings.TrimSuffix(key, "/") {
		return ErrInvalidKey
	}
	return nil
}

// FormatPath renders a storage identity and key for display in transcript
// references. Blob identities render as "blob://<namespace>/<key>", the root
// namespace as "blob:///<key>"; every other identity as "<identity>:<key>".
func FormatPath(identity, key string) string {
	if identity == "" {
		return key
	}
	if strings.HasPrefix(identity, BlobScheme+":") {
		namespace := strings.Trim(strings.TrimPrefix(identity, BlobScheme+":"), "/")
		if namespace == "" {
			return BlobScheme + ":///" + key
		}
		return BlobScheme + "://" + namespace + "/" + key
	}
	return identity + ":" + key
}

// IsLocalIdentity reports whether identity denotes local file storage
func IsLocalIdentity(identity string) bool {
	return strings.HasPrefix(identity, FileScheme+":")
}
