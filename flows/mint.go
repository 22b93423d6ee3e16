package flows

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mohitkumar/txflow/flow"
	"github.com/mohitkumar/txflow/model"
	"github.com/mohitkumar/txflow/restapi"
)

// Uploader stores an image and returns where it can be fetched.
type Uploader interface {
	UploadImage(ctx context.Context, filename string, content io.Reader) (*restapi.UploadResult, error)
}

// Card is a design available for free mints.
type Card struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Thumbnail   string `json:"thumbnail"`
}

var DefaultCards = []Card{
	{ID: 1, Name: "First Light", Description: "A sunrise over the festival grounds", Thumbnail: "ipfs://bafybeifirstlight"},
	{ID: 2, Name: "Crowd Wave", Description: "The front row at full voice", Thumbnail: "ipfs://bafybeicrowdwave"},
	{ID: 3, Name: "Encore", Description: "The last song of the night", Thumbnail: "ipfs://bafybeiencore"},
	{ID: 4, Name: "Backstage", Description: "Before the lights come up", Thumbnail: "ipfs://bafybeibackstage"},
}

// MintDefinition uploads the thumbnail, then mints a moment pointing at it.
//
// Input: address, eventPassId, name, description, tier (optional, 0 community or
// 1 pro) and the image, either thumbnail (base64) with filename, or thumbnailFile (a path).
func MintDefinition(uploader Uploader) flow.Definition {
	upload := flow.Step{
		Name: "upload",
		Kind: model.KIND_UPLOAD_ASSET,
		Exec: func(ctx context.Context, data map[string]any) (map[string]any, error) {
			if uploader == nil {
				return nil, errors.New("no uploader configured")
			}
			filename, content, err := thumbnail(data)
			if err != nil {
				return nil, err
			}
			res, err := uploader.UploadImage(ctx, filename, content)
			if err != nil {
				return nil, err
			}
			return map[string]any{"url": res.URL}, nil
		},
	}
	mint := ledgerStep("mint", model.KIND_MINT_MOMENT, addressParams(),
		arg("address", model.ARG_ADDRESS),
		arg("eventPassId", model.ARG_UINT64),
		arg("name", model.ARG_STRING),
		defaultArg("description", model.ARG_STRING, ""),
		arg("thumbnail", model.ARG_STRING),
		defaultArg("tier", model.ARG_UINT8, 0),
	)
	mint.Request.Arguments[4].Value = "{$.steps.upload.url}"
	mint.Output = momentOutput
	return flow.Definition{
		Name:  FLOW_MINT,
		Steps: []flow.Step{upload, mint},
	}
}

// FreeMintDefinition mints a random card. The card is picked before submission
// so a retry submits the same card.
//
// Input: address, name and description (both optional, default to the card's).
func FreeMintDefinition(pick func([]Card) (Card, bool), cards []Card) flow.Definition {
	step := ledgerStep("mint", model.KIND_MINT_MOMENT_FREE, addressParams(),
		arg("address", model.ARG_ADDRESS),
		defaultArg("name", model.ARG_STRING, ""),
		defaultArg("description", model.ARG_STRING, ""),
		defaultArg("thumbnail", model.ARG_STRING, ""),
		defaultArg("cardId", model.ARG_UINT64, uint64(0)),
	)
	step.Prepare = func(ctx context.Context, data map[string]any) (map[string]any, error) {
		vars, _ := data[flow.DATA_VARS].(map[string]any)
		if _, picked := vars["cardId"]; picked {
			return nil, nil
		}
		card, ok := pick(cards)
		if !ok {
			return nil, errors.New("no cards available for free mint")
		}
		name := inputString(data, "name")
		if name == "" {
			name = card.Name
		}
		description := inputString(data, "description")
		if description == "" {
			description = card.Description
		}
		return map[string]any{
			"cardId":      card.ID,
			"name":        name,
			"description": description,
			"thumbnail":   card.Thumbnail,
		}, nil
	}
	step.Output = momentOutput
	return flow.Definition{
		Name:  FLOW_FREE_MINT,
		Steps: []flow.Step{step},
	}
}

func momentOutput(outcome model.Outcome) map[string]any {
	minted := model.EventsOfType(outcome.Events, "Minted")
	if len(minted) == 0 {
		return nil
	}
	return map[string]any{"moment": minted[0].Payload}
}

func thumbnail(data map[string]any) (string, io.Reader, error) {
	if path := inputString(data, "thumbnailFile"); path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return "", nil, fmt.Errorf("read thumbnail: %w", err)
		}
		return filepath.Base(path), bytes.NewReader(content), nil
	}
	encoded := inputString(data, "thumbnail")
	if encoded == "" {
		return "", nil, errors.New("thumbnail is required")
	}
	content, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, fmt.Errorf("decode thumbnail: %w", err)
	}
	filename := inputString(data, "filename")
	if filename == "" {
		filename = "thumbnail.png"
	}
	return filename, bytes.NewReader(content), nil
}
