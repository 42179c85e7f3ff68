package sshkey

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

// recognizedPrefixes is the set of public key algorithm names Keyfetch will
// accept from a remote key host. Lines starting with anything else are not
// treated as key material.
var recognizedPrefixes = []string{
	"ssh-rsa",
	"ssh-dss",
	"ssh-ed25519",
	"ecdsa-sha2-nistp256",
	"ecdsa-sha2-nistp384",
	"ecdsa-sha2-nistp521",
	"sk-ecdsa-sha2-nistp256@openssh.com",
	"sk-ssh-ed25519@openssh.com",
}

// HasRecognizedPrefix reports whether the line begins with a known public key
// algorithm name followed by a field separator.
func HasRecognizedPrefix(line string) bool {
	for _, p := range recognizedPrefixes {
		if strings.HasPrefix(line, p+" ") {
			return true
		}
	}
	return false
}

// Parse splits a raw public key string (like one from an authorized_keys file)
// into its three core components: algorithm, key data, and comment.
// It correctly handles leading options in the line (e.g., from="...",command="...").
func Parse(rawKey string) (algorithm, keyData, comment string, err error) {
	fields := strings.Fields(rawKey)
	if len(fields) == 0 {
		err = fmt.Errorf("empty line")
		return
	}

	keyStartIndex := -1
	for i, field := range fields {
		if strings.HasPrefix(field, "ssh-") || strings.HasPrefix(field, "ecdsa-") || strings.HasPrefix(field, "sk-") {
			keyStartIndex = i
			break
		}
	}

	if keyStartIndex == -1 {
		err = fmt.Errorf("no valid SSH key type found in line")
		return
	}

	if len(fields) < keyStartIndex+2 {
		err = fmt.Errorf("invalid public key format: missing key data after algorithm")
		return
	}

	algorithm = fields[keyStartIndex]
	keyData = fields[keyStartIndex+1]
	if len(fields) > keyStartIndex+2 {
		comment = strings.Join(fields[keyStartIndex+2:], " ")
	}

	return
}

// Validate performs a structural sanity check of a public key line using the
// standard authorized_keys wire format. It does not verify the key
// cryptographically beyond what decoding requires.
func Validate(rawKey string) error {
	if !HasRecognizedPrefix(rawKey) {
		return fmt.Errorf("unrecognized key type in %q", firstField(rawKey))
	}
	if _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(rawKey)); err != nil {
		return fmt.Errorf("malformed public key: %w", err)
	}
	return nil
}

func firstField(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return s
}
