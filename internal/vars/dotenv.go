package vars

import (
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/unkn0wn-root/commandpost/internal/errdef"
)

// LoadFile reads a KEY=VALUE file into a provider labeled after the file
// name without extension (".env" files are labeled "dotenv").
func LoadFile(path string) (Provider, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeFilesystem, err, "read variables file %s", path)
	}
	return NewMapProvider(fileLabel(path), values), nil
}

func fileLabel(path string) string {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".env") {
		return "dotenv"
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
