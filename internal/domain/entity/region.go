package entity

// Region zona geográfica; su código decide qué shard guarda los datos de sus bodegas.
type Region struct {
	ID   string // código de región, ej. KV1
	Name string
}
