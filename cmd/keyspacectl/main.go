// keyspacectl inspects and manipulates a treekv store from the command line
package main

func main() {
	execute()
}
