package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/courselogic/core"
	"github.com/trezcool/courselogic/core/session"
	"github.com/trezcool/courselogic/core/user"
)

var (
	tokenContextKey = "userToken"
	userContextKey  = "user"

	nowFunc = time.Now // mockable
)

// Claims represents the authorization claims transmitted via a JWT.
// The token ID (jti) is the ID of the session the token belongs to.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Email        string `json:"email,omitempty"`
	Role         string `json:"role,omitempty"`
}

func (c Claims) IsAdmin() bool {
	return c.Role == user.RoleAdmin
}

// authenticator issues JWTs for sessions and checks that the session behind a token is still open.
type authenticator struct {
	conf     *core.Config
	sessions *session.Manager
	usrSvc   user.Service
	jwtConf  middleware.JWTConfig
}

func newAuthenticator(conf *core.Config, sessions *session.Manager, usrSvc user.Service) *authenticator {
	return &authenticator{
		conf:     conf,
		sessions: sessions,
		usrSvc:   usrSvc,
		jwtConf: middleware.JWTConfig{
			SigningKey:    []byte(conf.SecretKey),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    tokenContextKey,
			Claims:        new(Claims),
		},
	}
}

// middleware checks the JWT, then the session it was issued for.
func (a *authenticator) middleware() echo.MiddlewareFunc {
	jwtMw := middleware.JWTWithConfig(a.jwtConf)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return jwtMw(func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if _, ok := a.sessions.Current(claims.Id); !ok {
				return errSessionExpired
			}
			return next(ctx)
		})
	}
}

func (a *authenticator) claims(usr user.User, sess session.Session, origIat ...int64) *Claims {
	now := nowFunc()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        sess.ID,
			Issuer:    a.conf.AppName,
			Subject:   usr.ID,
			ExpiresAt: now.Add(a.conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Email:        usr.Email,
		Role:         usr.Role,
	}
}

// generateToken signs the claims into a JWT string.
func (a *authenticator) generateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(a.jwtConf.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(a.jwtConf.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// signIn opens a new session for usr and returns its token.
func (a *authenticator) signIn(usr user.User) (string, error) {
	sess := a.sessions.Open(usr.ID, usr.Role)
	token, err := a.generateToken(a.claims(usr, sess))
	if err != nil {
		a.sessions.Close(sess.ID)
		return "", err
	}
	return token, nil
}

func (a *authenticator) signOut(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	a.sessions.Close(claims.Id)
	return nil
}

// refresh extends the session of the context token and issues a new token for it.
func (a *authenticator) refresh(ctx echo.Context) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	usr, err := getContextUser(ctx, a.usrSvc)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}
	if usr.IsSuspended() {
		return "", errAccountSuspended
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(a.conf.Server.JWTRefreshExpirationDelta)
	if nowFunc().After(expTime) {
		return "", errRefreshExpired
	}

	sess, err := a.sessions.Refresh(claims.Id)
	if err != nil {
		if errors.Cause(err) == session.ErrNotFound {
			return "", errSessionExpired
		}
		return "", errors.Wrap(err, "refreshing session")
	}
	token, err := a.generateToken(a.claims(usr, sess, claims.OrigIssuedAt))
	return token, errors.Wrap(err, "generating token")
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(tokenContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextUser(ctx echo.Context, svc user.Service) (user.User, error) {
	if usr, ok := ctx.Get(userContextKey).(user.User); ok {
		return usr, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, errors.Wrap(err, "getting context claims")
	}
	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			// the account was terminated since the token was issued
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(userContextKey, usr)
	return usr, nil
}
