package connect

import (
	"crypto/sha1"

	"golang.org/x/crypto/pbkdf2"
)

// PSKSize is the size of a WPA pre-shared key.
const PSKSize = 32

// DerivePSK derives the pre-shared key a client writes to the psk
// characteristic from a WPA passphrase, like wpa_passphrase does.
func DerivePSK(passphrase string, ssid []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), ssid, 4096, PSKSize, sha1.New)
}
