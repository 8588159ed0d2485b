// Command pagectl boots the page allocator over simulated RAM and exercises it.
package main

func main() {
	execute()
}
