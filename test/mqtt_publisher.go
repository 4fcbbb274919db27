package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Summary payload as published by the vbox gateway
type SummaryPayload struct {
	Device    int     `json:"device"`
	TempC     float64 `json:"temp_c"`
	RPM       float64 `json:"rpm"`
	Pressure  float64 `json:"pressure"`
	Timestamp string  `json:"timestamp"`
}

func main() {
	broker := flag.String("broker", "tcp://localhost:1883", "MQTT broker address")
	username := flag.String("username", "pi", "MQTT username")
	password := flag.String("password", "raspberry", "MQTT password")
	topic := flag.String("topic", "vbox/summary", "topic to publish to")
	device := flag.Int("device", 1, "device id to publish for")
	mode := flag.String("mode", "continuous", "run mode: single, continuous")
	interval := flag.Duration("interval", 2*time.Second, "publish interval in continuous mode")
	flag.Parse()

	opts := paho.NewClientOptions()
	opts.AddBroker(*broker)
	opts.SetClientID(fmt.Sprintf("vbox-publisher-%d", time.Now().Unix()))
	opts.SetUsername(*username)
	opts.SetPassword(*password)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		fmt.Printf("connection lost: %v\n", err)
	})

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		fmt.Printf("failed to connect to MQTT broker: %v\n", token.Error())
		os.Exit(1)
	}
	fmt.Printf("connected to MQTT broker: %s\n", *broker)

	switch *mode {
	case "single":
		publish(client, *topic, *device)
	case "continuous":
		publishContinuous(client, *topic, *device, *interval)
	default:
		fmt.Println("unknown run mode, use single or continuous")
		os.Exit(1)
	}

	client.Disconnect(250)
}

// publish sends one summary payload
func publish(client paho.Client, topic string, device int) {
	payload := SummaryPayload{
		Device:    device,
		TempC:     20 + rand.Float64()*15,
		RPM:       float64(1200 + rand.Intn(800)),
		Pressure:  -10 + rand.Float64()*20,
		Timestamp: time.Now().Format(time.RFC3339),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		fmt.Printf("failed to serialize payload: %v\n", err)
		return
	}

	token := client.Publish(topic, 0, false, data)
	token.Wait()
	if token.Error() != nil {
		fmt.Printf("publish failed: %v\n", token.Error())
		return
	}
	fmt.Printf("published to %s: %s\n", topic, data)
}

// publishContinuous sends summary payloads until interrupted
func publishContinuous(client paho.Client, topic string, device int, interval time.Duration) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	fmt.Printf("publishing to %s every %s, Ctrl+C to stop\n", topic, interval)
	for {
		select {
		case <-ticker.C:
			publish(client, topic, device)
		case <-sigChan:
			fmt.Println("stopping publisher")
			return
		}
	}
}
