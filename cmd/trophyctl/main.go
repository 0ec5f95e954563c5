package main

var execute = Execute

func main() {
	execute()
}
