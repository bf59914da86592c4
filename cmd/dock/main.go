// Command dock is the terminal messaging client.
package main

func main() {
	Execute()
}
