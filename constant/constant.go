package constant

type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

func (s Sender) String() string {
	return string(s)
}

type RecordingStatus string

const (
	RecordingStatusPending    RecordingStatus = "pending"
	RecordingStatusProcessing RecordingStatus = "processing"
	RecordingStatusDone       RecordingStatus = "done"
)

// WorkflowSecretName is the repository secret provisioned during repo
// selection so the workflow can call back into the upload endpoints.
const WorkflowSecretName = "ALFRED_TOKEN"

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}
