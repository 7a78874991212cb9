package consts

const (
	AppName     = "forexcell"
	Description = "Forex analysis workflows over a registry of trading agents"
)

// Version is set at build time with -ldflags "-X github.com/dyike/forexcell/consts.Version=...".
var Version = "dev"

// Response codes of the HTTP envelope.
const (
	CodeOK         = 200
	CodeBadRequest = 400
	CodeNotFound   = 404
	CodeError      = 500
	CodeNoStore    = 503
)
