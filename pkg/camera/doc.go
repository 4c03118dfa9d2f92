// Package camera provides frame sources for live sessions.
//
// MJPEG reads a motion-JPEG byte stream, such as the output of
// "ffmpeg -f mjpeg -", and keeps the most recent decoded frame. File polls an
// image file and reloads it when its modification time changes. Both
// implement live.Camera.
package camera
