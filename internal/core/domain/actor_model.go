package domain

const (
	ACTOR_ID_MASTER     = "master"
	ACTOR_ID_MQTT       = "mqtt"
	ACTOR_ID_CONTROLLER = "controller"
)

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Events []SensorUpdateEvent
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Nodes []Node
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
	Published int
}

type RemoveDiscoveryRequest struct {
	ActorRequestMixIn
	Nodes []Node
}

type RemoveDiscoveryResponse struct {
	ActorResponseMixIn
	Removed int
}

type PublishNoticesRequest struct {
	ActorRequestMixIn
	Notices map[string]string
}

type SaveLogLevelRequest struct {
	ActorRequestMixIn
	Level int
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
