package auth

// BcryptVerifier verifies plaintext secrets against stored bcrypt hashes.
type BcryptVerifier struct{}

func (BcryptVerifier) Verify(credentialHash, secret string) bool {
	return CompareSecret(credentialHash, secret) == nil
}
