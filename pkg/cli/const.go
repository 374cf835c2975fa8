package cli

const (
	apiCommand         string = "api"
	workerCommand      string = "worker"
	monitorCommand     string = "monitor"
	reconcilerCommand  string = "reconciler"
	scanLibraryCommand string = "scan-library"
	scanCollectionCmd  string = "scan-collection"
	jobStatusCommand   string = "job-status"
	jobWatchCommand    string = "job-watch"
	indexRebuildCmd    string = "index-rebuild"
	dlqRecoverCommand  string = "dlq-recover"

	defaultConfigPath = "imagevault.yaml"
)
