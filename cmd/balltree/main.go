// Command balltree loads labeled samples into SQLite, grows ball trees over
// them and answers nearest neighbor and range queries from the command line.
package main

import "os"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
