package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/recycle-ai/recycle/internal/activation"
	"github.com/recycle-ai/recycle/internal/pickup"
)

var pickupCmd = &cobra.Command{
	Use:   "pickup [image]",
	Short: "Request a pickup for the item in a photo",
	Long: `pickup uploads the photo to the image host, reads the configured location and
records the request with the backend. Pass --image-url to retry with a photo
that an earlier attempt already uploaded.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPickup,
}

func init() {
	pickupCmd.Flags().String("image-url", "", "hosted image URL from a previous attempt")
}

func runPickup(cmd *cobra.Command, args []string) error {
	imageURL, _ := cmd.Flags().GetString("image-url")
	var req pickup.Request
	switch {
	case imageURL != "":
		req.ImageURL = imageURL
	case len(args) == 1:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		req.Filename = filepath.Base(args[0])
		req.Image = data
	default:
		return errors.New("an image path or --image-url is required")
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	if a.pickup == nil {
		return errors.New("pickup requests need image_host.cloud_name and image_host.upload_preset")
	}

	userID := ""
	if u, ok := a.session.Current(); ok {
		userID = string(u.ID)
	}

	receipt, err := a.pickup.Submit(ctx, req)
	payload := &activation.PickupPayload{Hosted: req.ImageURL != ""}
	var pe *pickup.Error
	if errors.As(err, &pe) {
		payload.Stage = string(pe.Stage)
		payload.Hosted = pe.HostedURL != ""
	}
	if receipt != nil {
		payload.Latitude = receipt.Position.Latitude
		payload.Longitude = receipt.Position.Longitude
		payload.Hosted = true
	}
	a.activation.Record(ctx, activation.BuildParams{
		Kind:   activation.KindPickupRequested,
		UserID: userID,
		Err:    err,
		Pickup: payload,
	})

	out := cmd.OutOrStdout()
	if err != nil {
		if pe != nil && pe.HostedURL != "" {
			warnColor.Fprintf(out, "Retry without uploading again: recycle pickup --image-url %s\n", pe.HostedURL)
		}
		return errors.New(userFacing(err))
	}
	correctColor.Fprintln(out, receipt.Message)
	fmt.Fprintf(out, "Image: %s\nLocation: %.5f, %.5f\n", receipt.ImageURL, receipt.Position.Latitude, receipt.Position.Longitude)
	return nil
}
