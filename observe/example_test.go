package observe_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jonwraymond/tokenauth/observe"
)

func ExampleNewObserver() {
	cfg := observe.Config{
		ServiceName: "tokenauthd",
		Version:     "1.0.0",
		Tracing:     observe.TracingConfig{Enabled: true, Exporter: "none"},
		Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
	}

	ctx := context.Background()
	obs, err := observe.NewObserver(ctx, cfg)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	defer func() {
		_ = obs.Shutdown(ctx)
	}()

	fmt.Println("Observer created successfully")
	// Output:
	// Observer created successfully
}

func ExampleNewObserver_validation() {
	_, err := observe.NewObserver(context.Background(), observe.Config{})
	if errors.Is(err, observe.ErrMissingServiceName) {
		fmt.Println("Caught: missing service name")
	}
	// Output:
	// Caught: missing service name
}

func ExampleOpMeta_SpanName() {
	fmt.Println(observe.OpMeta{Component: "issuer", Name: "issue"}.SpanName())
	fmt.Println(observe.OpMeta{Component: "guard", Name: "decide"}.SpanName())
	// Output:
	// auth.issuer.issue
	// auth.guard.decide
}

func ExampleNewLoggerWithWriter() {
	var buf bytes.Buffer
	logger := observe.NewLoggerWithWriter("info", &buf)

	logger.Info(context.Background(), "login",
		observe.Field{Key: "username", Value: "alice"},
		observe.Field{Key: "password", Value: "alice"},
	)

	fmt.Println(strings.Contains(buf.String(), `"username":"alice"`))
	fmt.Println(strings.Contains(buf.String(), `"password":"[REDACTED]"`))
	// Output:
	// true
	// true
}

func ExampleMiddleware_Instrument() {
	mw := observe.NopMiddleware()

	err := mw.Instrument(context.Background(), observe.OpMeta{Component: "guard", Name: "decide"},
		func(ctx context.Context) (string, error) {
			return "allowed", nil
		})
	fmt.Println(err)
	// Output:
	// <nil>
}
