//go:build !race

package auth

import "golang.org/x/crypto/bcrypt"

func maxRefreshTokenHashCost() int {
	return bcrypt.MaxCost
}
