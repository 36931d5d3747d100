package utils

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

// LongToBytes converts an int64 variable to byte array
// in little endian format
func LongToBytes(num int64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(num))
	return buf
}

// ULongToBytes converts an uint64 variable to byte array
// in little endian format
func ULongToBytes(num uint64) []byte {
	return LongToBytes(int64(num))
}

// WriteFile writes buf to a file whose path is indicated by filename.
func WriteFile(filename string, buf []byte, perm os.FileMode) error {
	if _, err := os.Stat(filename); err == nil {
		return fmt.Errorf("Can't write file. File '%s' already exists\n",
			filename)
	}

	if err := os.WriteFile(filename, buf, perm); err != nil {
		return err
	}
	return nil
}

// ResolvePath returns the absolute path of file.
// This will use other as a base path if file is just a file name.
func ResolvePath(file, other string) string {
	if !filepath.IsAbs(file) {
		file = filepath.Join(filepath.Dir(other), file)
	}
	return file
}
