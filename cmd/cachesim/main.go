// Command cachesim simulates cache eviction policies over synthetic
// workloads and prints miss-ratio curves.
//
// Entry point only; the cobra commands live in root.go, run.go and mrc.go.
package main

func main() {
	Execute()
}
