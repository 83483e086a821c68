package uuid

import . "github.com/nu7hatch/gouuid"

// GenerateUUID returns a random V4 UUID string.
func GenerateUUID() (string, error) {
	guid, err := NewV4()
	if err != nil {
		return "", err
	}
	return guid.String(), nil
}
