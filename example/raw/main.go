// Command raw prints the same records in the txt, json and raw formats.
package main

import (
	"fmt"
	"time"

	"github.com/lixenwraith/logpipe"
)

// TestPayload defines a struct for testing complex type serialization.
type TestPayload struct {
	RequestID uint64
	User      string
	Metrics   map[string]float64
}

func main() {
	byteRecord := []byte("binary\ndata\twith\x00null")
	structRecord := TestPayload{
		RequestID: 9223372036854775807,
		User:      "test_user",
		Metrics: map[string]float64{
			"latency_ms":  15.7,
			"cpu_percent": 88.2,
		},
	}

	for _, format := range []string{"txt", "json", "raw"} {
		fmt.Printf("\n[format=%s]\n", format)

		logger, err := logpipe.NewBuilder().
			Format(format).
			EnableConsole(true).
			Build()
		if err != nil {
			fmt.Printf("Failed to initialize logger: %v\n", err)
			return
		}
		if err := logger.Start(); err != nil {
			fmt.Printf("Failed to start logger: %v\n", err)
			return
		}

		logger.Infow("Byte Record", "payload", byteRecord)
		logger.Infow("Struct Record", "payload", structRecord)
		logger.Info("Mixed", 42, true, 3.5)

		if err := logger.Shutdown(time.Second); err != nil {
			fmt.Printf("Shutdown error: %v\n", err)
		}
	}
}
