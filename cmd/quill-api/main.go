package main

import (
	"context"
	"log"
	"net/http"

	httpadapter "github.com/quillhq/quill-agent/internal/adapters/http"
	"github.com/quillhq/quill-agent/internal/adapters/llm"
	firestorestore "github.com/quillhq/quill-agent/internal/adapters/storage/firestore"
	memstore "github.com/quillhq/quill-agent/internal/adapters/storage/memory"
	"github.com/quillhq/quill-agent/internal/app/chat"
	personaapp "github.com/quillhq/quill-agent/internal/app/persona"
	"github.com/quillhq/quill-agent/internal/config"
	"github.com/quillhq/quill-agent/internal/domain"
)

func main() {
	ctx := context.Background()
	cfg := config.Load()

	var (
		gateway domain.ModelGateway
		err     error
	)

	if cfg.UseMockLLM {
		log.Println("[LLM] Using scripted mock gateway")
		gateway = llm.NewMockGateway()
	} else {
		log.Println("[LLM] Using Gemini gateway")
		gateway, err = llm.NewGeminiClient(ctx, llm.GeminiConfig{
			ProjectID: cfg.GCPProjectID,
			Location:  cfg.GCPLocation,
			ModelName: cfg.ModelName,
		})
		if err != nil {
			log.Fatalf("error initializing Gemini gateway: %v", err)
		}
	}

	var personaStore domain.PersonaStore

	switch cfg.StorageBackend {
	case "firestore":
		if cfg.GCPProjectID == "" {
			log.Fatal("QUILL_GCP_PROJECT is required for the Firestore storage backend")
		}

		log.Printf("[STORE] Using Firestore storage (project=%s)", cfg.GCPProjectID)
		personaStore, err = firestorestore.NewStore(ctx, cfg.GCPProjectID)
		if err != nil {
			log.Fatalf("error initializing Firestore store: %v", err)
		}

	default:
		log.Println("[STORE] Using in-memory storage")
		personaStore = memstore.NewPersonaStore()
	}

	personaSvc := personaapp.NewService(gateway, personaStore)
	registry := chat.NewRegistry(gateway)

	handler := httpadapter.NewServer(personaSvc, registry)

	addr := ":" + cfg.Port
	log.Println("Quill API listening on", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatal(err)
	}
}
