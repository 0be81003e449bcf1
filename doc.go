// Package dvrip is a client for the DVRIP-family vendor camera/DVR control
// protocol: a single TCP connection multiplexing request/response control
// traffic (JSON over a small binary frame header), unsolicited alarm
// events, and continuous media/audio streams.
//
// A Client is created with New, brought up with Connect, and authenticated
// with Login. Once authenticated it exposes monitoring (StartMonitor),
// alarm subscription (StartAlarmMonitoring), file playback (ListLocalFiles,
// DownloadFile, StreamFile), two-way audio (StartTalk/SendAudio/StopTalk),
// firmware upgrade (Upgrade), and a long tail of simple get/set device
// verbs (PTZ, user/group management, system configuration).
//
// The dynamic, loosely-typed JSON the device speaks is exposed on this
// package's public surface as plain json.RawMessage rather than a family of
// per-verb structs, matching how the protocol itself treats every payload
// as a freely-shaped JSON value.
package dvrip
