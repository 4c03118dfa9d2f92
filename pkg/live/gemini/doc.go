// Package gemini implements a live.Transport on top of the Gemini Live API.
//
// Outbound microphone audio is sent as realtime audio input and camera
// frames as realtime video input. Inbound model turns are converted into
// live.Event values: the setup acknowledgement becomes EventOpen, every audio
// part becomes an EventMessage, and an interruption flag is attached to the
// last event of the message so that audio is always handled first.
//
// Example:
//
//	t := &gemini.Transport{APIKey: os.Getenv("GEMINI_API_KEY")}
//	sess := live.NewSession(t, devices, live.Config{})
package gemini
