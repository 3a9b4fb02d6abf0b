// Command curvesim runs scenario files.
package main

import "github.com/sarchlab/curvesim/cmd"

func main() {
	cmd.Execute()
}
