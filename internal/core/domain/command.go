package domain

const (
	COMMAND_UPDATE_PROFILE     = "UPDATE_PROFILE"
	COMMAND_REMOVE_NOTICES_ALL = "REMOVE_NOTICES_ALL"
	COMMAND_DEBUG              = "DEBUG"
	COMMAND_OPERATION          = "OPERATION"
	COMMAND_QUERY              = "QUERY"
	COMMAND_DELETE             = "DELETE"
	COMMAND_RESTORE_LOG_LEVEL  = "RESTORE_LOG_LEVEL"
	COMMAND_HUB_ONLINE         = "HUB_ONLINE"

	DEFAULT_LOG_LEVEL = 30
)

// ControllerCommand

type ControllerCommand interface {
	ActorRequest
	CommandName() string
}

type UpdateProfileCommand struct {
	ActorRequestMixIn
}

func (UpdateProfileCommand) CommandName() string { return COMMAND_UPDATE_PROFILE }

type RemoveNoticesAllCommand struct {
	ActorRequestMixIn
}

func (RemoveNoticesAllCommand) CommandName() string { return COMMAND_REMOVE_NOTICES_ALL }

// DebugCommand sets the log level. A nil Level restores the saved level.
type DebugCommand struct {
	ActorRequestMixIn
	Level *int
}

func (DebugCommand) CommandName() string { return COMMAND_DEBUG }

type OperationCommand struct {
	ActorRequestMixIn
	Mode string
}

func (OperationCommand) CommandName() string { return COMMAND_OPERATION }

type QueryCommand struct {
	ActorRequestMixIn
}

func (QueryCommand) CommandName() string { return COMMAND_QUERY }

type DeleteCommand struct {
	ActorRequestMixIn
}

func (DeleteCommand) CommandName() string { return COMMAND_DELETE }

// RestoreLogLevelCommand carries the level persisted by a previous run.
type RestoreLogLevelCommand struct {
	ActorRequestMixIn
	Level int
}

func (RestoreLogLevelCommand) CommandName() string { return COMMAND_RESTORE_LOG_LEVEL }

// HubOnlineCommand is issued when the hub announces it (re)started.
type HubOnlineCommand struct {
	ActorRequestMixIn
}

func (HubOnlineCommand) CommandName() string { return COMMAND_HUB_ONLINE }

type ControllerCommandResponse struct {
	ActorResponseMixIn
	Command string
}

// ParameterUpdate is a single custom parameter edited from the hub.
type ParameterUpdate struct {
	Key   string
	Value string
}

// ensure interface compliance
var (
	_ ControllerCommand = UpdateProfileCommand{}
	_ ControllerCommand = RemoveNoticesAllCommand{}
	_ ControllerCommand = DebugCommand{}
	_ ControllerCommand = OperationCommand{}
	_ ControllerCommand = QueryCommand{}
	_ ControllerCommand = DeleteCommand{}
	_ ControllerCommand = RestoreLogLevelCommand{}
	_ ControllerCommand = HubOnlineCommand{}
)
