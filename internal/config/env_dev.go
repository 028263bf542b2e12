//go:build dev

package config

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
)

// Dev builds merge a .env file from the working directory into the process
// environment before it is read. A missing file is fine.
func loadDotEnv() error {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
