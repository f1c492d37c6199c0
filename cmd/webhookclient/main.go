// webhookclient posts signed provider webhooks to a running service, for
// local development and manual testing.
//
// Generate a key pair, start the service with the public key, then fire
// events:
//
//	go run ./cmd/webhookclient -genkey
//	WEBHOOK_PUBLIC_KEY=<pub> go run ./cmd
//	go run ./cmd/webhookclient -key <priv> -event call.answered -call-id test-1
//	go run ./cmd/webhookclient -key <priv> -event call.transcription -call-id test-1 -text "Hello there"
//	go run ./cmd/webhookclient -key <priv> -event call.hangup -call-id test-1
package main

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/carlmjohnson/requests"

	"call-translation-service/internal/webhook"
)

func main() {
	var (
		genKey       = flag.Bool("genkey", false, "generate an ed25519 key pair and exit")
		keyB64       = flag.String("key", "", "base64 ed25519 private key used to sign the payload")
		url          = flag.String("url", "http://localhost:8080/v1/webhooks/call", "webhook endpoint")
		eventType    = flag.String("event", "call.transcription", "provider event type")
		callID       = flag.String("call-id", "test-call-1", "provider call ID")
		text         = flag.String("text", "", "utterance text for transcription events")
		confidence   = flag.Float64("confidence", 0.95, "transcription confidence")
		recordingURL = flag.String("recording-url", "", "recording URL for hangup events")
	)
	flag.Parse()

	if *genKey {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			log.Fatalf("generate key: %v", err)
		}
		fmt.Printf("public key:  %s\n", base64.StdEncoding.EncodeToString(pub))
		fmt.Printf("private key: %s\n", base64.StdEncoding.EncodeToString(priv))
		return
	}

	payload := map[string]any{
		"event_type": *eventType,
		"call_id":    *callID,
		"timestamp":  time.Now().UnixMilli(),
	}
	if *text != "" {
		payload["text"] = *text
		payload["confidence"] = *confidence
	}
	if *recordingURL != "" {
		payload["recording_url"] = *recordingURL
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Fatalf("marshal payload: %v", err)
	}

	req := requests.URL(*url).
		Method(http.MethodPost).
		BodyBytes(body).
		ContentType("application/json")

	if *keyB64 != "" {
		rawKey, err := base64.StdEncoding.DecodeString(*keyB64)
		if err != nil || len(rawKey) != ed25519.PrivateKeySize {
			log.Fatalf("invalid private key")
		}
		ts := strconv.FormatInt(time.Now().Unix(), 10)
		req = req.
			Header(webhook.HeaderTimestamp, ts).
			Header(webhook.HeaderSignature, webhook.SignPayload(ed25519.PrivateKey(rawKey), ts, body))
	}

	var resp bytes.Buffer
	if err := req.ToBytesBuffer(&resp).Fetch(context.Background()); err != nil {
		log.Fatalf("webhook request failed: %v", err)
	}
	fmt.Printf("sent %s for %s: %s\n", *eventType, *callID, resp.String())
}
