package modelclient

import (
	"errors"
	"testing"
)

func TestErrorFromStatusCode(t *testing.T) {
	tests := []struct {
		status    int
		wantType  string
		retryable bool
	}{
		{400, "*modelclient.InvalidRequestError", false},
		{401, "*modelclient.AuthenticationError", false},
		{403, "*modelclient.AuthenticationError", false},
		{404, "*modelclient.NotFoundError", false},
		{408, "*modelclient.RequestTimeoutError", true},
		{422, "*modelclient.InvalidRequestError", false},
		{429, "*modelclient.RateLimitError", true},
		{500, "*modelclient.ServerError", true},
		{503, "*modelclient.ServerError", true},
		{418, "*modelclient.ProviderError", true},
	}

	for _, tt := range tests {
		err := ErrorFromStatusCode(tt.status, "boom", "testprovider")
		if err == nil {
			t.Fatalf("status %d: expected an error", tt.status)
		}
		if got := typeName(err); got != tt.wantType {
			t.Errorf("status %d: expected %s, got %s", tt.status, tt.wantType, got)
		}
		if IsRetryable(err) != tt.retryable {
			t.Errorf("status %d: expected retryable=%v", tt.status, tt.retryable)
		}
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *InvalidRequestError:
		return "*modelclient.InvalidRequestError"
	case *AuthenticationError:
		return "*modelclient.AuthenticationError"
	case *NotFoundError:
		return "*modelclient.NotFoundError"
	case *RequestTimeoutError:
		return "*modelclient.RequestTimeoutError"
	case *RateLimitError:
		return "*modelclient.RateLimitError"
	case *ServerError:
		return "*modelclient.ServerError"
	case *ProviderError:
		return "*modelclient.ProviderError"
	default:
		return "unknown"
	}
}

func TestClientErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &ClientError{Message: "wrapper", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
	if err.Error() != "wrapper: root cause" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestIsRetryableNil(t *testing.T) {
	if IsRetryable(nil) {
		t.Error("nil error must not be retryable")
	}
	if IsRetryable(errors.New("plain")) {
		t.Error("plain errors must not be retryable")
	}
}
