//go:build integration
// +build integration

package integration

import (
	"encoding/base64"

	"github.com/bitrise-io/go-utils/v2/log"
)

var logger = log.NewLogger()

// 1x1 transparent PNG
const tinyPNGBase64 = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

func tinyPNG() []byte {
	payload, err := base64.StdEncoding.DecodeString(tinyPNGBase64)
	if err != nil {
		panic(err)
	}
	return payload
}
