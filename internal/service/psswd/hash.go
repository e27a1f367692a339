// Package psswd - bcrypt хеширование паролей счетов.
package psswd

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

type PasswordHash string

func (p PasswordHash) HashPassword(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %s", err.Error())
	}
	return string(digest), nil
}

// ComparePassword сверяет пароль с хешем. true - совпадает.
func (p PasswordHash) ComparePassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
