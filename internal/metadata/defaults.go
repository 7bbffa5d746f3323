package metadata

// defaultModels is used when no models file is configured.
const defaultModels = `
models:
  - name: main
    label: Auto-numbered records
    fields:
      - {name: name, type: string}
    counters:
      - {}
  - name: composed
    label: Inhabitants per city
    fields:
      - {name: country, type: string}
      - {name: city, type: string}
      - {name: inhabitant, type: integer, readOnly: true}
    counters:
      - name: inhabitant_counter
        field: inhabitant
        referenceFields: [country, city]
  - name: manual
    label: Manually numbered records
    fields:
      - {name: name, type: string}
      - {name: like, type: integer}
    counters:
      - {field: like, manual: true}
`

// Defaults returns the built-in models.
func Defaults() *Registry {
	reg, err := Parse([]byte(defaultModels))
	if err != nil {
		panic("metadata: invalid built-in models: " + err.Error())
	}
	return reg
}

// LoadOrDefault reads the models file, or returns the built-in models when
// path is empty.
func LoadOrDefault(path string) (*Registry, error) {
	if path == "" {
		return Defaults(), nil
	}
	return LoadFile(path)
}
