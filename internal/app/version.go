package app

const ServiceName = "student-fee-service"

// Set with -ldflags, e.g.
//
//	go build -ldflags="-X 'student-fee-service/internal/app.Version=1.2.0' -X 'student-fee-service/internal/app.GitCommit=$(git rev-parse --short HEAD)'" ./cmd/server
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)
