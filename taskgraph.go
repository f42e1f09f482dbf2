package taskgraph

import (
	"github.com/petrijr/taskgraph/internal/assets"
	"github.com/petrijr/taskgraph/internal/config"
	"github.com/petrijr/taskgraph/internal/graph"
	"github.com/petrijr/taskgraph/internal/persistence"
	"github.com/petrijr/taskgraph/pkg/api"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Value                = api.Value
	ValueType            = api.ValueType
	Vector3              = api.Vector3
	EntityID             = api.EntityID
	AssetID              = api.AssetID
	TaskStatus           = api.TaskStatus
	Params               = api.Params
	ParameterBinding     = api.ParameterBinding
	VariableDefinition   = api.VariableDefinition
	AtomicTask           = api.AtomicTask
	ContextTask          = api.ContextTask
	TaskContext          = api.TaskContext
	TaskFactory          = api.TaskFactory
	Blackboard           = api.Blackboard
	Components           = api.Components
	World                = api.World
	RunnerState          = api.RunnerState
	NoAbort              = api.NoAbort
	Observer             = api.Observer
	NodeInfo             = api.NodeInfo
	LoggingObserver      = api.LoggingObserver
	BasicMetrics         = api.BasicMetrics
	BasicMetricsSnapshot = api.BasicMetricsSnapshot
	CompositeObserver    = api.CompositeObserver
	NoopObserver         = api.NoopObserver

	// Template is a compiled, immutable graph shared by every entity bound
	// to it.
	Template = graph.Template

	// LoadError lists every problem found in a rejected graph document.
	LoadError = graph.LoadError

	RunnerStore  = persistence.RunnerStore
	RunnerRecord = persistence.RunnerRecord
	StoreOptions = persistence.Options
	Config       = config.Config
)

// Re-export common helpers.

var (
	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver

	Vec3    = api.Vec3
	Literal = api.Literal
	Ref     = api.Ref

	BoolValue      = api.BoolValue
	IntValue       = api.IntValue
	FloatValue     = api.FloatValue
	StringValue    = api.StringValue
	Vector3Value   = api.Vector3Value
	EntityRefValue = api.EntityRefValue

	FormatPath = api.FormatPath
	ParsePath  = api.ParsePath

	// ComputeAssetID maps a template path to its asset id.
	ComputeAssetID = assets.ComputeAssetID

	// LoadGraphJSON and LoadGraphFile compile graph documents without
	// caching them.
	LoadGraphJSON = graph.LoadFromJSON
	LoadGraphFile = graph.LoadFromFile

	// ValidateGraphJSON checks the document structure without compiling.
	ValidateGraphJSON = graph.ValidateJSON

	// OpenStore connects the RunnerStore backend named in the options.
	OpenStore = persistence.Open

	// LoadConfig reads a YAML host configuration.
	LoadConfig = config.Load

	ErrRunnerNotFound = persistence.ErrRunnerNotFound
	ErrAssetNotFound  = assets.ErrAssetNotFound
)

// Re-export status values for convenience.

const (
	StatusSuccess = api.StatusSuccess
	StatusFailure = api.StatusFailure
	StatusRunning = api.StatusRunning

	TypeBool      = api.TypeBool
	TypeInt       = api.TypeInt
	TypeFloat     = api.TypeFloat
	TypeString    = api.TypeString
	TypeVector3   = api.TypeVector3
	TypeEntityRef = api.TypeEntityRef

	// NoNode is the runner cursor of a finished graph.
	NoNode = graph.None

	NoEntity       = api.NoEntity
	InvalidAssetID = api.InvalidAssetID
)

// NewInMemoryStore returns a non-durable RunnerStore.
func NewInMemoryStore() RunnerStore {
	return persistence.NewInMemoryStore()
}
