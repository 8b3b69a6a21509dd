package embedding

import (
	"encoding/json"
	"fmt"
)

func unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("embedding: decode response: %w", err)
	}
	return nil
}
