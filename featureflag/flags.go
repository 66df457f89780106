package featureflag

type Flag string

const (
	FlagDisableSessionState              Flag = "DISABLE_SESSION_STATE"
	FlagDisableParticipantJoinBroadcast  Flag = "DISABLE_PARTICIPANT_JOIN_BROADCAST"
	FlagDisableParticipantLeaveBroadcast Flag = "DISABLE_PARTICIPANT_LEAVE_BROADCAST"
	FlagDisableVolumeAddBroadcast        Flag = "DISABLE_VOLUME_ADD_BROADCAST"
	FlagDisableVolumeUpdateBroadcast     Flag = "DISABLE_VOLUME_UPDATE_BROADCAST"
	FlagDisableVolumeRemoveBroadcast     Flag = "DISABLE_VOLUME_REMOVE_BROADCAST"
	FlagDisableFrameOptimize             Flag = "DISABLE_FRAME_OPTIMIZE"
	FlagDisableQueryParallelism          Flag = "DISABLE_QUERY_PARALLELISM"
)
