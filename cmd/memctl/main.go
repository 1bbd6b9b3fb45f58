// Command memctl runs the memory driver against a simulated machine whose
// physical memory and driver store live in a state directory, and issues
// requests to it from the command line. Every invocation is a fresh driver
// incarnation, so a RAM disk created by one run is recovered by the next.
package main

func main() {
	execute()
}
