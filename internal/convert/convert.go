// Package convert copies fields between map payloads and typed structs.
package convert

import (
	"github.com/mitchellh/mapstructure"
)

// Decode projects src into dst by matching json tags. Weak typing tolerates
// payloads where numbers arrive as strings and vice versa.
func Decode(src, dst any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           dst,
		WeaklyTypedInput: true,
		ZeroFields:       true,
	})
	if err != nil {
		return err
	}

	return decoder.Decode(src)
}

// DecodeValue decodes and returns the value in one step.
func DecodeValue[T any](src any) (T, error) {
	var result T
	err := Decode(src, &result)
	return result, err
}
