package vault

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
)

// KMSMasterKey wraps data keys with an AWS KMS key. The master key material
// never leaves the KMS HSM; only Encrypt and Decrypt calls cross the wire.
type KMSMasterKey struct {
	client *kms.Client
	keyID  string
}

// NewKMSMasterKey returns a MasterKey backed by the given KMS key. keyID may
// be a key ID, key ARN, alias name, or alias ARN.
func NewKMSMasterKey(ctx context.Context, keyID string) (*KMSMasterKey, error) {
	if keyID == "" {
		return nil, fmt.Errorf("kms key id is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &KMSMasterKey{client: kms.NewFromConfig(cfg), keyID: keyID}, nil
}

// NewKMSMasterKeyFromConfig builds a KMSMasterKey from an existing AWS
// config, for callers that already resolved credentials.
func NewKMSMasterKeyFromConfig(cfg aws.Config, keyID string) *KMSMasterKey {
	return &KMSMasterKey{client: kms.NewFromConfig(cfg), keyID: keyID}
}

func (k *KMSMasterKey) ID() string { return k.keyID }

func (k *KMSMasterKey) Wrap(ctx context.Context, dataKey []byte) ([]byte, error) {
	out, err := k.client.Encrypt(ctx, &kms.EncryptInput{
		KeyId:     aws.String(k.keyID),
		Plaintext: dataKey,
	})
	if err != nil {
		return nil, fmt.Errorf("kms encrypt: %w", err)
	}
	return out.CiphertextBlob, nil
}

func (k *KMSMasterKey) Unwrap(ctx context.Context, wrapped []byte) ([]byte, error) {
	out, err := k.client.Decrypt(ctx, &kms.DecryptInput{
		KeyId:          aws.String(k.keyID),
		CiphertextBlob: wrapped,
	})
	if err != nil {
		return nil, fmt.Errorf("kms decrypt: %w", err)
	}
	return out.Plaintext, nil
}
