package main

import (
	"gitnotify/service"
	"log"
)

func main() {
	ser, err := service.NewService()
	if err != nil {
		log.Fatalf("Failed to initialize service: %v", err)
	}
	defer func() {
		if err := ser.Close(); err != nil {
			log.Printf("Error during service shutdown: %v", err)
		}
	}()

	if err := ser.Start(); err != nil {
		log.Fatalf("Service error: %v", err)
	}
}
