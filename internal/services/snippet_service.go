package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/maynagashev/snipvault/internal/models"
	"github.com/maynagashev/snipvault/internal/repository"
	"github.com/maynagashev/snipvault/internal/storage"
	"github.com/maynagashev/snipvault/internal/tasks"
)

// Количество типов файлов в сводной статистике.
const summaryTopFileTypes = 3

// SnippetService определяет интерфейс сервиса работы со сниппетами.
//
// Каждая операция заново собирает состояние из хранилищ: процесс не держит
// ничего между вызовами, вся координация - атомарность строк БД.
type SnippetService interface {
	Upload(ctx context.Context, userID int64, fileName, content string) (*models.Snippet, error)
	Download(ctx context.Context, userID int64, fileName string) (*models.Snippet, string, error)
	Update(ctx context.Context, userID int64, fileName, content string) (*models.Snippet, time.Time, error)
	Delete(ctx context.Context, userID int64, fileName string) error
	GrantAccess(ctx context.Context, ownerID int64, fileName, targetUsername string) error
	RevokeAccess(ctx context.Context, ownerID int64, fileName, targetUsername string) error
	Dashboard(ctx context.Context, userID int64) (string, []models.DashboardSnippet, error)
	Summary(ctx context.Context, userID int64) (*models.Summary, error)
}

// Убедимся, что snippetService удовлетворяет интерфейсу SnippetService.
var _ SnippetService = (*snippetService)(nil)

type snippetService struct {
	userRepo     repository.UserRepository
	snippetRepo  repository.SnippetRepository
	downloadRepo repository.DownloadRepository
	content      storage.ContentStore
	notifier     tasks.MetadataNotifier
}

// NewSnippetService создает новый экземпляр сервиса сниппетов.
func NewSnippetService(
	userRepo repository.UserRepository,
	snippetRepo repository.SnippetRepository,
	downloadRepo repository.DownloadRepository,
	content storage.ContentStore,
	notifier tasks.MetadataNotifier,
) SnippetService {
	return &snippetService{
		userRepo:     userRepo,
		snippetRepo:  snippetRepo,
		downloadRepo: downloadRepo,
		content:      content,
		notifier:     notifier,
	}
}

// Upload шифрует и сохраняет новый сниппет.
// Имя файла должно быть свободно у владельца; набор доступа нового сниппета пуст.
func (s *snippetService) Upload(
	ctx context.Context,
	userID int64,
	fileName, content string,
) (*models.Snippet, error) {
	owner, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		log.Printf("[SnippetService] Ошибка поиска владельца %d при загрузке: %v", userID, err)
		return nil, errors.New("внутренняя ошибка сервера при поиске пользователя")
	}

	// Предварительная проверка занятости имени: не пишем объект впустую.
	// Гонку двух одновременных загрузок закрывает уникальный индекс при вставке.
	_, err = s.snippetRepo.GetByFileNameAndOwner(ctx, fileName, userID)
	if err == nil {
		return nil, ErrDuplicateFileName
	}
	if !errors.Is(err, repository.ErrSnippetNotFound) {
		log.Printf("[SnippetService] Ошибка проверки имени '%s' при загрузке: %v", fileName, err)
		return nil, errors.New("внутренняя ошибка сервера при проверке имени файла")
	}

	// Сначала содержимое в объектное хранилище, затем строка в БД:
	// при ошибке вставки остается осиротевший объект, но никогда -
	// строка с указателем в никуда.
	objectKey, err := s.content.Put(ctx, fileName, []byte(content))
	if err != nil {
		log.Printf("[SnippetService] Ошибка записи содержимого '%s': %v", fileName, err)
		return nil, errors.New("внутренняя ошибка сервера при сохранении содержимого")
	}

	snippet := &models.Snippet{
		ID:            uuid.New().String(),
		OwnerID:       owner.ID,
		OwnerUsername: owner.Username,
		FileName:      fileName,
		FileType:      fileTypeOf(fileName),
		ObjectKey:     objectKey,
	}

	if err = s.snippetRepo.CreateSnippet(ctx, snippet); err != nil {
		// Убираем только что записанный объект, чтобы не копить сирот
		if delErr := s.content.Delete(ctx, objectKey); delErr != nil {
			log.Printf("[SnippetService] Не удалось удалить объект '%s' после ошибки вставки: %v",
				objectKey, delErr)
		}
		if errors.Is(err, repository.ErrDuplicateFileName) {
			return nil, ErrDuplicateFileName
		}
		log.Printf("[SnippetService] Ошибка создания сниппета '%s': %v", fileName, err)
		return nil, errors.New("внутренняя ошибка сервера при создании сниппета")
	}

	log.Printf("[SnippetService] Сниппет '%s' (ID: %s) загружен пользователем %d",
		fileName, snippet.ID, userID)
	return snippet, nil
}

// Download выдает расшифрованное содержимое сниппета, видимого запросившему,
// и фиксирует скачивание в журнале. Повторное скачивание той же тройки
// (пользователь, имя файла, владелец) отклоняется с ErrAlreadyDownloaded.
func (s *snippetService) Download(
	ctx context.Context,
	userID int64,
	fileName string,
) (*models.Snippet, string, error) {
	snippet, err := s.snippetRepo.GetVisibleByFileName(ctx, fileName, userID)
	if err != nil {
		if errors.Is(err, repository.ErrSnippetNotFound) {
			// "Нет доступа" и "не существует" для путей чтения неразличимы
			return nil, "", ErrSnippetNotFound
		}
		log.Printf("[SnippetService] Ошибка поиска сниппета '%s' при скачивании: %v", fileName, err)
		return nil, "", errors.New("внутренняя ошибка сервера при поиске сниппета")
	}

	// Расшифровываем до записи в журнал: запись о скачивании появляется
	// только как следствие успешной расшифровки и выдачи.
	plaintext, err := s.content.Get(ctx, snippet.ObjectKey)
	if err != nil {
		if errors.Is(err, storage.ErrCorruptContent) {
			log.Printf("[SnippetService] Содержимое сниппета %s повреждено", snippet.ID)
			return nil, "", ErrCorruptContent
		}
		log.Printf("[SnippetService] Ошибка чтения содержимого сниппета %s: %v", snippet.ID, err)
		return nil, "", errors.New("внутренняя ошибка сервера при чтении содержимого")
	}

	created, err := s.downloadRepo.RecordDownload(ctx, &models.DownloadRecord{
		UserID:        userID,
		SnippetID:     snippet.ID,
		OwnerID:       snippet.OwnerID,
		OwnerUsername: snippet.OwnerUsername,
		FileName:      snippet.FileName,
	})
	if err != nil {
		log.Printf("[SnippetService] Ошибка записи скачивания сниппета %s: %v", snippet.ID, err)
		return nil, "", errors.New("внутренняя ошибка сервера при записи скачивания")
	}
	if !created {
		return nil, "", ErrAlreadyDownloaded
	}

	log.Printf("[SnippetService] Сниппет '%s' скачан пользователем %d", fileName, userID)
	return snippet, string(plaintext), nil
}

// Update заменяет содержимое сниппета, видимого запросившему (владелец или
// участник набора доступа), и асинхронно уведомляет пайплайн извлечения метаданных.
//
// Порядок замены: новый объект записывается под новым ключом, строка
// перенаправляется, старый объект удаляется в последнюю очередь. Сбой на
// любом шаге оставляет максимум осиротевший объект, но не висячий указатель.
func (s *snippetService) Update(
	ctx context.Context,
	userID int64,
	fileName, content string,
) (*models.Snippet, time.Time, error) {
	snippet, err := s.snippetRepo.GetVisibleByFileName(ctx, fileName, userID)
	if err != nil {
		if errors.Is(err, repository.ErrSnippetNotFound) {
			return nil, time.Time{}, ErrSnippetNotFound
		}
		log.Printf("[SnippetService] Ошибка поиска сниппета '%s' при обновлении: %v", fileName, err)
		return nil, time.Time{}, errors.New("внутренняя ошибка сервера при поиске сниппета")
	}

	newKey, err := s.content.Put(ctx, fileName, []byte(content))
	if err != nil {
		log.Printf("[SnippetService] Ошибка записи нового содержимого '%s': %v", fileName, err)
		return nil, time.Time{}, errors.New("внутренняя ошибка сервера при сохранении содержимого")
	}

	oldKey := snippet.ObjectKey
	updatedAt, err := s.snippetRepo.UpdateObjectKey(ctx, snippet.ID, newKey)
	if err != nil {
		if delErr := s.content.Delete(ctx, newKey); delErr != nil {
			log.Printf("[SnippetService] Не удалось удалить объект '%s' после ошибки перенаправления: %v",
				newKey, delErr)
		}
		log.Printf("[SnippetService] Ошибка перенаправления сниппета %s: %v", snippet.ID, err)
		return nil, time.Time{}, errors.New("внутренняя ошибка сервера при обновлении сниппета")
	}

	// Старый объект больше недостижим из БД; его удаление - уборка,
	// сбой которой не влияет на результат операции
	if err = s.content.Delete(ctx, oldKey); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		log.Printf("[SnippetService] Не удалось удалить прежний объект '%s': %v", oldKey, err)
	}

	// Уведомляем пайплайн извлечения метаданных (fire-and-forget)
	s.notifier.SnippetUpdated(snippet.ID, snippet.FileName, content)

	log.Printf("[SnippetService] Сниппет '%s' обновлен пользователем %d", fileName, userID)
	return snippet, updatedAt, nil
}

// Delete удаляет сниппет. Операция принадлежит исключительно владельцу:
// участнику набора доступа возвращается ErrNotOwner - владельческий путь
// намеренно различает "не существует" и "не ваш" в отличие от путей чтения.
func (s *snippetService) Delete(ctx context.Context, userID int64, fileName string) error {
	snippet, err := s.snippetRepo.GetByFileName(ctx, fileName)
	if err != nil {
		if errors.Is(err, repository.ErrSnippetNotFound) {
			return ErrSnippetNotFound
		}
		log.Printf("[SnippetService] Ошибка поиска сниппета '%s' при удалении: %v", fileName, err)
		return errors.New("внутренняя ошибка сервера при поиске сниппета")
	}

	if snippet.OwnerID != userID {
		log.Printf("[SnippetService] Пользователь %d пытался удалить чужой сниппет '%s'", userID, fileName)
		return ErrNotOwner
	}

	// Сначала строка (набор доступа и метаданные уходят каскадом), затем
	// объект: сбой удаления объекта оставляет сироту, а не висячий указатель
	if err = s.snippetRepo.DeleteSnippet(ctx, snippet.ID, snippet.OwnerID); err != nil {
		if errors.Is(err, repository.ErrSnippetNotFound) {
			// Конкурентное удаление уже все сделало
			return ErrSnippetNotFound
		}
		log.Printf("[SnippetService] Ошибка удаления сниппета %s: %v", snippet.ID, err)
		return errors.New("внутренняя ошибка сервера при удалении сниппета")
	}

	if err = s.content.Delete(ctx, snippet.ObjectKey); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			// Объекта уже нет - для удаления это не ошибка
			log.Printf("[SnippetService] Объект '%s' уже отсутствовал при удалении", snippet.ObjectKey)
		} else {
			log.Printf("[SnippetService] Не удалось удалить объект '%s': %v", snippet.ObjectKey, err)
		}
	}

	log.Printf("[SnippetService] Сниппет '%s' удален владельцем %d", fileName, userID)
	return nil
}

// GrantAccess добавляет пользователя в набор доступа сниппета. Только владелец.
// Повторная выдача - no-op с успехом; выдача доступа самому владельцу - no-op:
// набор доступа никогда не содержит владельца, владение подразумевается.
func (s *snippetService) GrantAccess(
	ctx context.Context,
	ownerID int64,
	fileName, targetUsername string,
) error {
	snippet, target, err := s.authorizePermissionChange(ctx, ownerID, fileName, targetUsername)
	if err != nil {
		return err
	}
	if target.ID == snippet.OwnerID {
		return nil
	}

	if err = s.snippetRepo.GrantAccess(ctx, snippet.ID, target.ID); err != nil {
		log.Printf("[SnippetService] Ошибка выдачи доступа '%s' к '%s': %v", targetUsername, fileName, err)
		return errors.New("внутренняя ошибка сервера при выдаче доступа")
	}

	log.Printf("[SnippetService] Пользователю '%s' выдан доступ к '%s'", targetUsername, fileName)
	return nil
}

// RevokeAccess убирает пользователя из набора доступа сниппета. Только владелец.
// Отзыв отсутствующего доступа - no-op с успехом.
func (s *snippetService) RevokeAccess(
	ctx context.Context,
	ownerID int64,
	fileName, targetUsername string,
) error {
	snippet, target, err := s.authorizePermissionChange(ctx, ownerID, fileName, targetUsername)
	if err != nil {
		return err
	}
	if target.ID == snippet.OwnerID {
		return nil
	}

	if err = s.snippetRepo.RevokeAccess(ctx, snippet.ID, target.ID); err != nil {
		log.Printf("[SnippetService] Ошибка отзыва доступа '%s' к '%s': %v", targetUsername, fileName, err)
		return errors.New("внутренняя ошибка сервера при отзыве доступа")
	}

	log.Printf("[SnippetService] У пользователя '%s' отозван доступ к '%s'", targetUsername, fileName)
	return nil
}

// authorizePermissionChange проверяет владение сниппетом и существование целевого
// пользователя. Поиск ограничен заявленным владельцем, поэтому "не существует" и
// "не ваш" здесь сливаются в один отказ ErrNotOwner.
func (s *snippetService) authorizePermissionChange(
	ctx context.Context,
	ownerID int64,
	fileName, targetUsername string,
) (*models.Snippet, *models.User, error) {
	snippet, err := s.snippetRepo.GetByFileNameAndOwner(ctx, fileName, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrSnippetNotFound) {
			return nil, nil, ErrNotOwner
		}
		log.Printf("[SnippetService] Ошибка поиска сниппета '%s' владельца %d: %v", fileName, ownerID, err)
		return nil, nil, errors.New("внутренняя ошибка сервера при поиске сниппета")
	}

	target, err := s.userRepo.GetUserByUsername(ctx, targetUsername)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil, ErrTargetUserNotFound
		}
		log.Printf("[SnippetService] Ошибка поиска пользователя '%s': %v", targetUsername, err)
		return nil, nil, errors.New("внутренняя ошибка сервера при поиске пользователя")
	}

	return snippet, target, nil
}

// Dashboard возвращает имя аккаунта и сниппеты, принадлежащие пользователю
// или доступные ему по набору доступа.
func (s *snippetService) Dashboard(
	ctx context.Context,
	userID int64,
) (string, []models.DashboardSnippet, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		log.Printf("[SnippetService] Ошибка поиска пользователя %d для дашборда: %v", userID, err)
		return "", nil, errors.New("внутренняя ошибка сервера при поиске пользователя")
	}

	snippets, err := s.snippetRepo.ListForUser(ctx, userID)
	if err != nil {
		log.Printf("[SnippetService] Ошибка получения дашборда пользователя %d: %v", userID, err)
		return "", nil, errors.New("внутренняя ошибка сервера при получении дашборда")
	}

	return user.Username, snippets, nil
}

// Summary возвращает сводную статистику аккаунта: счетчики и самые
// частые типы файлов среди собственных сниппетов.
func (s *snippetService) Summary(ctx context.Context, userID int64) (*models.Summary, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		log.Printf("[SnippetService] Ошибка поиска пользователя %d для сводки: %v", userID, err)
		return nil, errors.New("внутренняя ошибка сервера при поиске пользователя")
	}

	fileTypes, err := s.snippetRepo.CountFileTypes(ctx, userID, summaryTopFileTypes)
	if err != nil {
		log.Printf("[SnippetService] Ошибка подсчета типов файлов пользователя %d: %v", userID, err)
		return nil, errors.New("внутренняя ошибка сервера при подсчете типов файлов")
	}

	return &models.Summary{
		Username:            user.Username,
		TotalUploads:        user.TotalUploads,
		TotalDownloads:      user.TotalDownloads,
		MostActiveFileTypes: fileTypes,
	}, nil
}

// fileTypeOf выводит тип файла из суффикса имени.
// Имя без точки (или с точкой только в начале) типа не имеет.
func fileTypeOf(fileName string) string {
	idx := strings.LastIndex(fileName, ".")
	if idx <= 0 || idx == len(fileName)-1 {
		return ""
	}
	return strings.ToLower(fileName[idx+1:])
}

// Кастомные ошибки сервиса сниппетов.
var (
	ErrSnippetNotFound    = errors.New("сниппет не найден")
	ErrDuplicateFileName  = errors.New("файл с таким именем уже существует в вашем аккаунте")
	ErrNotOwner           = errors.New("вы не владелец этого сниппета или он не существует")
	ErrAlreadyDownloaded  = errors.New("вы уже скачивали этот файл у этого пользователя")
	ErrCorruptContent     = errors.New("содержимое сниппета повреждено")
	ErrTargetUserNotFound = errors.New("целевой пользователь не найден")
	ErrUserNotFound       = errors.New("пользователь не найден")
)
