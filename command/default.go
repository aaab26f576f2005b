package command

const (
	DefaultNodeURL  = "ws://127.0.0.1:9944"
	DefaultLogLevel = "info"
)

const (
	JSONOutputFlag = "json"
	NodeFlag       = "node"
	ConfigFlag     = "config"
	LogLevelFlag   = "log-level"
)
