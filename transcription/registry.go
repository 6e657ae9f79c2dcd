package transcription

import (
	"fmt"
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/kbukum/voicememo/provider"
)

var registry = provider.NewRegistry[Service]()

// Register makes a backend factory available to New under name.
func Register(name string, factory provider.Factory[Service]) {
	registry.RegisterFactory(name, factory)
}

// New builds the named backend from a loosely typed config map.
func New(name string, cfg map[string]any) (Service, error) {
	return registry.Create(name, cfg)
}

// Names lists the registered backends.
func Names() []string {
	return registry.List()
}

// Decode copies a factory config map into a typed backend config. Keys use
// the mapstructure tags; durations accept strings such as "90s".
func Decode(cfg map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			durationFromNumber,
		),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("decode provider config: %w", err)
	}
	return nil
}

// durationFromNumber treats bare numbers as seconds.
func durationFromNumber(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	switch v := data.(type) {
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	}
	return data, nil
}
