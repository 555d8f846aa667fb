package httphandler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignature_RoundTrip(t *testing.T) {
	secret := "It's a Secret to Everybody"
	body := []byte("Hello, World!")

	header := SignBody(secret, body)
	assert.True(t, VerifySignature(secret, body, header))
}

func TestVerifySignature_KnownVector(t *testing.T) {
	// Example from GitHub's webhook validation docs.
	secret := "It's a Secret to Everybody"
	body := []byte("Hello, World!")
	header := "sha256=757107ea0eb2509fc211221cce984b8a37570b6d7586c22c46f4379c8b043e17"

	assert.True(t, VerifySignature(secret, body, header))
}

func TestVerifySignature_TamperedBody(t *testing.T) {
	secret := "s3cr3t"
	body := []byte(`{"zen":"Keep it logically awesome."}`)
	header := SignBody(secret, body)

	tampered := make([]byte, len(body))
	copy(tampered, body)
	tampered[0] ^= 0x01

	assert.False(t, VerifySignature(secret, tampered, header))
}

func TestVerifySignature_TamperedSignature(t *testing.T) {
	secret := "s3cr3t"
	body := []byte(`{}`)
	header := SignBody(secret, body)

	flipped := []byte(header)
	last := flipped[len(flipped)-1]
	if last == 'a' {
		flipped[len(flipped)-1] = 'b'
	} else {
		flipped[len(flipped)-1] = 'a'
	}

	assert.False(t, VerifySignature(secret, body, string(flipped)))
}

func TestVerifySignature_WrongSecret(t *testing.T) {
	body := []byte(`{}`)
	header := SignBody("right", body)

	assert.False(t, VerifySignature("wrong", body, header))
}

func TestVerifySignature_MalformedHeaders(t *testing.T) {
	secret := "s3cr3t"
	body := []byte(`{}`)

	assert.False(t, VerifySignature(secret, body, ""))
	assert.False(t, VerifySignature(secret, body, "sha256="))
	assert.False(t, VerifySignature(secret, body, "sha256=zzzz"))
	assert.False(t, VerifySignature(secret, body, "sha1=da39a3ee5e6b4b0d"))
	assert.False(t, VerifySignature(secret, body, "757107ea0eb2509f"))
}

func TestVerifySignature_EmptySecret(t *testing.T) {
	body := []byte(`{}`)
	header := SignBody("", body)

	assert.False(t, VerifySignature("", body, header), "an empty secret never verifies")
}
