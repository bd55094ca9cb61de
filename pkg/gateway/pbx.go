package gateway

import "context"

// PBXAdapter is the contract the orchestrator uses to control the PBX
// channel, per spec §4.9. pkg/ari's Client satisfies this structurally;
// the gateway package never imports pkg/ari, so the dependency runs one
// way (ari → gateway's normalized event types, not the reverse).
type PBXAdapter interface {
	Answer(ctx context.Context, channelID string) error
	CreateMixerBridge(ctx context.Context) (bridgeID string, err error)
	AddToBridge(ctx context.Context, bridgeID, channelID string) error
	CreateMediaInjectionChannel(ctx context.Context, host string, port int, codec string) (channelID string, err error)
	CreateListenerChannel(ctx context.Context, sourceChannelID, spyDirection string) (channelID string, err error)
	Play(ctx context.Context, channelID, mediaRef string) (playbackHandle string, err error)
	StopPlayback(ctx context.Context, handle string) error
	SetChannelVar(ctx context.Context, channelID, name, value string) error
	SetTalkDetect(ctx context.Context, channelID string, energy, silenceMs int) error
	RemoveTalkDetect(ctx context.Context, channelID string) error
	ContinueInDialplan(ctx context.Context, channelID string) error
}
