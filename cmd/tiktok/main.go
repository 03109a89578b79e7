// Command tiktok collects the videos of TikTok profiles, either as an HTTP
// service streaming server-sent events or one profile at a time from the
// terminal.
package main

func main() {
	Execute()
}
