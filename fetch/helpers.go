package fetch

import (
	"encoding/json"
	"os"
)

func osReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func decodeJSON(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
