// Command dysonctl is a small terminal front end for the library: it walks
// the provision/login flow, lists account devices, and decrypts local broker
// credential blobs.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/cmgrayb/libdyson-rest/client"
)

var (
	version   string
	buildDate string
)

// promptOTP reads the one-time code the backend delivered out of band.
func promptOTP() string {
	fmt.Print("Enter the OTP code you received: ")
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return ""
	}
	return strings.TrimSpace(scanner.Text())
}

func login(ctx context.Context, c *client.Client, otp string) error {
	apiVersion, err := c.Provision(ctx)
	if err != nil {
		return fmt.Errorf("provision: %w", err)
	}
	fmt.Printf("API version: %s\n", apiVersion)

	status, err := c.GetUserStatus(ctx)
	if err != nil {
		return fmt.Errorf("user status: %w", err)
	}
	fmt.Printf("Account status: %s (auth method %s)\n", status.AccountStatus, status.AuthenticationMethod)

	outcome, err := c.Authenticate(ctx, otp)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	if outcome.Status == client.AuthPending {
		code := promptOTP()
		if code == "" {
			return fmt.Errorf("no OTP code entered")
		}
		if _, err := c.CompleteLogin(ctx, outcome.Challenge.ChallengeID.String(), code); err != nil {
			return fmt.Errorf("complete login: %w", err)
		}
	}

	fmt.Println("Login successful.")
	fmt.Printf("Bearer token (keep secret, reusable with -token): %s\n", c.AuthToken())
	return nil
}

func listDevices(ctx context.Context, c *client.Client) error {
	devices, err := c.GetDevices(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%d device(s):\n", len(devices))
	for _, d := range devices {
		fmt.Printf("  %s  %-20s  type=%s  fw=%s  connection=%s\n",
			d.SerialNumber, d.Name, d.ProductType, d.Version, d.ConnectionCategory)
	}
	return nil
}

func showIoT(ctx context.Context, c *client.Client, serial string) error {
	data, err := c.GetIoTCredentials(ctx, serial)
	if err != nil {
		return err
	}
	b, _ := json.MarshalIndent(data, "", "  ")
	fmt.Println(string(b))
	return nil
}

func showRelease(ctx context.Context, c *client.Client, serial string) error {
	release, err := c.GetPendingRelease(ctx, serial)
	if err != nil {
		return err
	}
	fmt.Printf("Pending release for %s: %s (pushed: %v)\n", serial, release.Version, release.Pushed)
	return nil
}

func decrypt(c *client.Client, serial, blob string) error {
	creds, err := c.DecryptLocalCredentials(blob, serial)
	if err != nil {
		return err
	}
	fmt.Printf("Username: %s\nPassword: %s\n", creds.Username, creds.Password)
	return nil
}

func main() {
	var (
		cmd      string
		email    string
		mobile   string
		password string
		country  string
		otp      string
		token    string
		serial   string
		blob     string
		debug    bool
		showVer  bool
	)

	flag.StringVar(&cmd, "cmd", "", "command: login | devices | iot | release | decrypt")
	flag.StringVar(&email, "email", os.Getenv("DYSON_EMAIL"), "account email address")
	flag.StringVar(&mobile, "mobile", "", "account mobile number with country code (CN region only)")
	flag.StringVar(&password, "password", os.Getenv("DYSON_PASSWORD"), "account password")
	defaultCountry := os.Getenv("DYSON_COUNTRY")
	if defaultCountry == "" {
		defaultCountry = "US"
	}
	flag.StringVar(&country, "country", defaultCountry, "two-letter country code")
	flag.StringVar(&otp, "otp", "", "OTP code, if already received")
	flag.StringVar(&token, "token", os.Getenv("DYSON_TOKEN"), "previously exported bearer token")
	flag.StringVar(&serial, "serial", "", "device serial number")
	flag.StringVar(&blob, "blob", "", "base64 encrypted local credential blob")
	flag.BoolVar(&debug, "debug", false, "enable debug logging (logs decrypted plaintext on failures)")
	flag.BoolVar(&showVer, "version", false, "show build version and date")
	flag.Parse()

	if showVer {
		fmt.Printf("dysonctl\nVersion: %s\nBuild Date: %s\n", version, buildDate)
		return
	}

	logger := zap.NewNop()
	if debug {
		l, err := zap.NewDevelopment()
		if err != nil {
			log.Fatal(err)
		}
		logger = l
		defer func() { _ = logger.Sync() }()
	}

	c, err := client.New(client.Config{
		Email:     email,
		Mobile:    mobile,
		Password:  password,
		Country:   country,
		AuthToken: token,
		Logger:    logger,
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	switch cmd {
	case "login":
		err = login(ctx, c, otp)
	case "devices":
		err = listDevices(ctx, c)
	case "iot":
		if serial == "" {
			log.Fatal("please provide -serial")
		}
		err = showIoT(ctx, c, serial)
	case "release":
		if serial == "" {
			log.Fatal("please provide -serial")
		}
		err = showRelease(ctx, c, serial)
	case "decrypt":
		if serial == "" || blob == "" {
			log.Fatal("please provide -serial and -blob")
		}
		err = decrypt(c, serial, blob)
	default:
		log.Fatalf("unknown command: %q (want login, devices, iot, release or decrypt)", cmd)
	}
	if err != nil {
		log.Fatal(err)
	}
}
