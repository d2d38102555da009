// Command pharmaintel runs the multi-agent drug repurposing pipeline from the
// terminal and records the reviewer's decision.
package main

func main() {
	Execute()
}
