package metadata

const (
	moduleFlag = "module"
	blockFlag  = "block"
)

var (
	params = &metadataParams{}
)

type metadataParams struct {
	module   string
	blockRaw string
}
