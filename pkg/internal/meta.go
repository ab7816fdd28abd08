package pkg

const (
	AppName    = "Boorud"
	AppVersion = "1.2.0"
)
